// Package language normalizes the language hints vsub passes to speech
// engines. Users may write a language as an ISO 639-1 code, an ISO 639-2
// code, or an English word; container tags use ISO 639-2. Engines want the
// two-letter form.
package language
