package crmaccess

import (
	"net/url"
	"path"
	"strings"
)

// UploadPrefix is the blob key prefix of files staged by uid for
// crm.attachment.upload.
func UploadPrefix(uid string) string {
	return "uploads/" + url.PathEscape(uid) + "/"
}

// OwnsUpload reports whether key has the "{prefix}{id}/{name}" shape issued
// to uid.
func OwnsUpload(uid, key string) bool {
	rest := strings.TrimPrefix(key, UploadPrefix(uid))
	if rest == key {
		return false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		return false
	}
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			return false
		}
	}
	return true
}

// SafeFileName keeps object keys free of path separators and control characters.
func SafeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	clean := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	if clean == "" || clean == "." || clean == "/" || clean == ".." {
		return "file"
	}
	return clean
}
