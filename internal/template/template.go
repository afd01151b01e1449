/**
 * @description
 * Pure placeholder substitution for reminder message texts. Templates use
 * `{placeholder}` markers; unresolved placeholders are left verbatim so a
 * misconfigured template degrades visibly instead of dropping text.
 */
package template

import "strings"

// Known placeholder names accepted in message templates. Which of these carry
// a value for a given client depends on the account's payment method; that is
// the caller's concern, not the renderer's.
const (
	PlaceholderName          = "nome"
	PlaceholderAmount        = "valor"
	PlaceholderDueDate       = "vencimento"
	PlaceholderPaymentDate   = "data_pagamento"
	PlaceholderNewDueDate    = "novo_vencimento"
	PlaceholderCopyPasteCode = "pix_copia_cola"
	PlaceholderPixKey        = "chave_pix"
)

// Render substitutes `{key}` markers in text with values from subs. Markers
// without a substitution stay verbatim; surrounding text is never dropped and
// rendering never fails.
func Render(text string, subs map[string]string) string {
	if len(subs) == 0 || !strings.Contains(text, "{") {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))

	for {
		open := strings.IndexByte(text, '{')
		if open < 0 {
			b.WriteString(text)
			return b.String()
		}
		closing := strings.IndexByte(text[open:], '}')
		if closing < 0 {
			b.WriteString(text)
			return b.String()
		}
		closing += open

		key := text[open+1 : closing]
		if strings.ContainsRune(key, '{') {
			// Stray opening brace; emit it and rescan from the next rune.
			b.WriteString(text[:open+1])
			text = text[open+1:]
			continue
		}
		if value, ok := subs[key]; ok {
			b.WriteString(text[:open])
			b.WriteString(value)
		} else {
			// Unknown placeholder: keep the marker, braces included.
			b.WriteString(text[:closing+1])
		}
		text = text[closing+1:]
	}
}
