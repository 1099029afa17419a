// Package template renders notification subjects and bodies from stored
// templates.
//
// Templates are keyed by (code, channel, language). Lookup tries the exact
// language, then its base language ("th-TH" → "th"), then the engine's
// default language. Placeholders use {{name}} or {name}; a placeholder
// without a value stays in the output unchanged, so rendering never fails.
package template
