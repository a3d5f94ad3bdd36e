// Package schemasassets embeds the JSON schemas used to validate input files,
// so validation works regardless of the working directory.
package schemasassets

import _ "embed"

// TrainManifestSchema validates `gotune train --job` manifests.
//
//go:embed train-manifest.schema.json
var TrainManifestSchema []byte
