package resources

import "embed"

//go:embed i18n.yaml personalities.yaml
var FS embed.FS
