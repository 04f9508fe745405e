// Package dataset bundles the default poll feed and the images it references.
package dataset

import (
	"embed"
	"io/fs"
)

const (
	// PostsFile is the dataset file name within FS
	PostsFile = "posts.json"
	// AssetDir is the image directory within FS
	AssetDir = "assets"
)

//go:embed posts.json assets
var files embed.FS

// FS returns the bundled dataset filesystem
func FS() fs.FS {
	return files
}
