// Package language maps the many ways a book's language shows up (ISO codes,
// English names, native names, BCP 47 tags in embedded metadata) onto one
// ISO 639-1 code and a display name for folder naming.
package language
