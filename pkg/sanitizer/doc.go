// Package sanitizer normalizes untrusted string input before it reaches
// storage or templates. Transforms are plain func(string) string values
// chained with Apply, so call sites read as a pipeline:
//
//	msg := sanitizer.Apply(raw,
//	    sanitizer.StripHTML,
//	    sanitizer.SingleLine,
//	    sanitizer.Trim,
//	)
package sanitizer
