// Package configs embeds the example configuration template so it ships
// with every build of the binary.
//
// `ragcore config init` writes the template to the user's config path.
// To change it, edit ragcore.yaml in this directory and rebuild.
package configs

import _ "embed"

// ConfigTemplate is the annotated example configuration written by
// `ragcore config init`.
//
//go:embed ragcore.yaml
var ConfigTemplate string
