// Package imagery implements the picture-producing workflow steps:
// extract_characters builds a portrait roster for visual consistency,
// generate_images delegates per-scene illustration to the job scheduler and
// polls the job to completion, and generate_thumbnail produces the cover
// image. The package also provides the scheduler runner that executes one
// illustration item.
package imagery
