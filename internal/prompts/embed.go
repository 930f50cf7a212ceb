// Package prompts loads the ordered set of analysis prompt templates.
package prompts

import "embed"

//go:embed templates/*.md
var embeddedFS embed.FS
