// internal/app/system/limits/limits.go
package limits

// Request body size limits for various features.
// These limits help prevent memory exhaustion from oversized requests.
const (
	// MaxJSONBody is the maximum size for JSON API request bodies.
	MaxJSONBody = 1 << 20 // 1 MB

	// MaxProfileImage is the largest accepted profile picture upload.
	MaxProfileImage = 5 << 20 // 5 MB

	// MaxRegisterMemory bounds the in-memory part of a multipart
	// registration form: the picture plus the text fields.
	MaxRegisterMemory = MaxProfileImage + 1<<20

	// MaxRegisterBody caps the whole multipart registration request.
	MaxRegisterBody = MaxRegisterMemory + 1<<20
)
