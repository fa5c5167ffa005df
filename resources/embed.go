// Package resources bundles migration and translation assets into the binary.
package resources

import "embed"

//go:embed migrations/*.sql i18n/*.yml
var FS embed.FS
