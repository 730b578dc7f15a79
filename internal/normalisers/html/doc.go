// Package html sanitises rich text authored in the CMS editor.
//
// Sanitised text has no markup, no scripts or embedded objects, decoded
// entities, and one paragraph per line, so it can be indexed and surfaced
// to site visitors verbatim.
package html
