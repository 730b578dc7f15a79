// Package normalisers holds the text preparation stages applied to content
// records before chunking: the record normaliser that flattens a record by
// its kind's field paths, and the sanitizers for HTML and Markdown fields.
package normalisers
