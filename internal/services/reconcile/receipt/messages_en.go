package receipt

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.English

	message.SetString(lang, "receipt.subject", "Receipt for lesson payment %s | %s")
	message.SetString(lang, "receipt.greeting", "Hi %s,")
	message.SetString(lang, "receipt.intro", "Thank you for your payment. Your receipt details are below for your records.")
	message.SetString(lang, "receipt.number", "Receipt number: %s")
	message.SetString(lang, "receipt.paid_on", "Paid on: %s")
	message.SetString(lang, "receipt.student", "Student: %s")
	message.SetString(lang, "receipt.amount", "Amount: $%s")
	message.SetString(lang, "receipt.tax", "Tax: $%s")
	message.SetString(lang, "receipt.closing", "%s")
}
