// Package upload validates incoming files against an allow-list of
// types, filename safety rules, a size ceiling, and magic-number
// signatures before a handler is allowed to persist them.
package upload

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/apexanalytical/labcms/pkg/errs"
)

// allowedTypes maps permitted MIME types to their canonical extension.
var allowedTypes = map[string]string{
	"image/jpeg":         ".jpg",
	"image/jpg":          ".jpg",
	"image/png":          ".png",
	"image/gif":          ".gif",
	"image/webp":         ".webp",
	"application/pdf":    ".pdf",
	"text/plain":         ".txt",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
}

// fileSignatures are the magic-number prefixes per MIME type. Types
// without an entry skip the signature check.
var fileSignatures = map[string][]byte{
	"image/jpeg":      {0xFF, 0xD8, 0xFF},
	"image/jpg":       {0xFF, 0xD8, 0xFF},
	"image/png":       {0x89, 0x50, 0x4E, 0x47},
	"image/gif":       {0x47, 0x49, 0x46},
	"image/webp":      {0x52, 0x49, 0x46, 0x46},
	"application/pdf": {0x25, 0x50, 0x44, 0x46},
}

// SignatureLen is how many leading bytes the signature check needs.
const SignatureLen = 8

// dangerousFilenames reject path traversal, characters illegal in
// filenames, reserved device names, hidden files, and executable or
// script extensions.
var dangerousFilenames = []*regexp.Regexp{
	regexp.MustCompile(`\.\.`),
	regexp.MustCompile(`[<>:"|?*]`),
	regexp.MustCompile(`(?i)^(CON|PRN|AUX|NUL|COM[1-9]|LPT[1-9])$`),
	regexp.MustCompile(`^\.`),
	regexp.MustCompile(`(?i)\.(exe|bat|cmd|com|pif|scr|vbs|js|jar|php|asp|aspx|jsp)$`),
}

// Validator applies the upload admission rules
type Validator struct {
	maxBytes int64
	allowed  map[string]string
}

// NewValidator creates a validator with the given size ceiling. When
// mimeTypes is non-empty it narrows the built-in allow-list.
func NewValidator(maxBytes int64, mimeTypes []string) *Validator {
	allowed := allowedTypes
	if len(mimeTypes) > 0 {
		allowed = make(map[string]string, len(mimeTypes))
		for _, m := range mimeTypes {
			if ext, ok := allowedTypes[m]; ok {
				allowed[m] = ext
			}
		}
	}
	return &Validator{maxBytes: maxBytes, allowed: allowed}
}

// CheckDeclared validates everything known before any bytes are
// written: size ceiling, MIME allow-list, extension consistency, and
// filename safety. Size is checked first so oversized files are
// rejected before signature work.
func (v *Validator) CheckDeclared(filename, mimeType string, size int64) error {
	if size > v.maxBytes {
		return errs.FileUpload("file size too large")
	}

	ext, ok := v.allowed[mimeType]
	if !ok {
		return errs.FileUpload("file type " + mimeType + " is not allowed")
	}

	if strings.HasPrefix(mimeType, "image/") {
		actual := strings.ToLower(filepath.Ext(filename))
		if actual != ext && !(ext == ".jpg" && actual == ".jpeg") {
			return errs.FileUpload("file extension does not match declared type")
		}
	}

	for _, pattern := range dangerousFilenames {
		if pattern.MatchString(filename) {
			return errs.FileUpload("filename contains invalid or dangerous characters")
		}
	}

	return nil
}

// CheckSignature compares the file's leading bytes against the
// expected magic number for the declared MIME type.
func (v *Validator) CheckSignature(head []byte, mimeType string) error {
	signature, ok := fileSignatures[mimeType]
	if !ok {
		return nil
	}
	if len(head) < len(signature) || !bytes.Equal(head[:len(signature)], signature) {
		return errs.FileUpload("file content does not match declared type")
	}
	return nil
}

// Extension returns the canonical extension for an allowed MIME type
func (v *Validator) Extension(mimeType string) string {
	return v.allowed[mimeType]
}
