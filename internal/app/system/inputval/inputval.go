// Package inputval validates request structs declared with `validate:"…"`
// struct tags and turns violations into apperr field errors.
//
// Besides the stock validator rules, it registers:
//   - username:   ^[a-z0-9_]+$
//   - looseemail: ^\S+@\S+\.\S+$
//   - phone:      ^[\d\s\+\-\(\)]+$
//   - imageurl:   an http(s) URL to an image file, or any URL on a trusted image host
package inputval

import (
	"fmt"
	"net/url"
	"path"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/globaltrotter/globaltrotter/internal/domain/apperr"
	"github.com/go-playground/validator/v10"
)

var (
	usernameRE = regexp.MustCompile(`^[a-z0-9_]+$`)
	emailRE    = regexp.MustCompile(`^\S+@\S+\.\S+$`)
	phoneRE    = regexp.MustCompile(`^[\d\s\+\-\(\)]+$`)
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".svg": true,
}

var (
	hostsMu      sync.RWMutex
	trustedHosts = map[string]bool{
		"res.cloudinary.com":        true,
		"lh3.googleusercontent.com": true,
		"images.unsplash.com":       true,
	}
)

// TrustImageHost adds host to the set of hosts whose URLs are accepted as
// profile pictures regardless of file extension (e.g. the S3 or CDN host
// uploads are served from).
func TrustImageHost(host string) {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return
	}
	hostsMu.Lock()
	trustedHosts[host] = true
	hostsMu.Unlock()
}

func isTrustedHost(host string) bool {
	hostsMu.RLock()
	defer hostsMu.RUnlock()
	if trustedHosts[host] {
		return true
	}
	// subdomains of a trusted host
	for h := range trustedHosts {
		if strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return IsValidUsername(fl.Field().String())
		})
		_ = v.RegisterValidation("looseemail", func(fl validator.FieldLevel) bool {
			return IsValidEmail(fl.Field().String())
		})
		_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			return IsValidPhone(fl.Field().String())
		})
		_ = v.RegisterValidation("imageurl", func(fl validator.FieldLevel) bool {
			return IsImageURL(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// Result holds the outcome of Validate.
type Result struct {
	Errors []apperr.FieldError
}

// HasErrors reports whether any rule failed.
func (r Result) HasErrors() bool { return len(r.Errors) > 0 }

// First returns the first violation message, or "".
func (r Result) First() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0].Message
}

// Err returns the violations as an *apperr.ValidationError, or nil.
func (r Result) Err() error {
	if !r.HasErrors() {
		return nil
	}
	return &apperr.ValidationError{Fields: r.Errors}
}

// Merge appends other's violations.
func (r *Result) Merge(other Result) {
	r.Errors = append(r.Errors, other.Errors...)
}

// Add appends a single violation.
func (r *Result) Add(field, rule, message string) {
	r.Errors = append(r.Errors, apperr.FieldError{Field: field, Rule: rule, Message: message})
}

// Validate runs struct-tag validation on s (a struct or pointer to struct).
func Validate(s any) Result {
	err := instance().Struct(s)
	if err == nil {
		return Result{}
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return Result{Errors: []apperr.FieldError{{Field: "", Rule: "invalid", Message: err.Error()}}}
	}
	var res Result
	for _, fe := range verrs {
		field := fieldPath(fe.Namespace())
		res.Add(field, fe.Tag(), message(field, fe))
	}
	return res
}

// fieldPath drops the leading struct name from a validator namespace:
// "createTripInput.sections[0].name" -> "sections[0].name".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if", "required_unless":
		return fmt.Sprintf("%s is required.", field)
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters.", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s.", field, fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters.", field, fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s item(s).", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s.", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be %s or more.", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s.", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s.", field, fe.Param())
	case "username":
		return fmt.Sprintf("%s may only contain lowercase letters, digits and underscores.", field)
	case "looseemail":
		return fmt.Sprintf("%s must be a valid email address.", field)
	case "phone":
		return fmt.Sprintf("%s may only contain digits, spaces and + - ( ).", field)
	case "imageurl":
		return fmt.Sprintf("%s must be an image URL or a URL on a trusted image host.", field)
	case "gtefield":
		return fmt.Sprintf("%s must not be before %s.", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid.", field)
	}
}

// IsValidEmail applies the basic email shape check.
func IsValidEmail(s string) bool {
	return emailRE.MatchString(s)
}

// IsValidUsername reports whether s is a normalized username.
func IsValidUsername(s string) bool {
	return usernameRE.MatchString(s)
}

// IsValidPhone reports whether s contains only phone-number characters.
func IsValidPhone(s string) bool {
	return phoneRE.MatchString(s)
}

// IsImageURL reports whether raw is an http(s) URL that points at an image
// file, or any http(s) URL on a trusted image host.
func IsImageURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if imageExts[strings.ToLower(path.Ext(u.Path))] {
		return true
	}
	return isTrustedHost(strings.ToLower(u.Hostname()))
}
