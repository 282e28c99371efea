// Package form validates submitted fields before anything is persisted.
package form

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"

	"tweetyard/config"
)

// NonField is the key for errors that do not belong to a single field.
const NonField = "__all__"

// ValidationError carries one message per offending field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Invalid builds a ValidationError for a single field.
func Invalid(field, msg string) *ValidationError {
	e := &ValidationError{}
	e.add(field, msg)
	return e
}

// Upload is an attachment as received from the client. Content must be
// rewindable: validation sniffs the first bytes and seeks back.
type Upload struct {
	Filename string
	Size     int64
	Content  io.ReadSeeker

	// set by a successful validation
	MediaType string
	Extension string
}

type PostInput struct {
	Body            string
	Upload          *Upload
	ClearAttachment bool
}

type Registration struct {
	Username  string `validate:"required,max=150,username"`
	Password1 string `validate:"required,min=8,maxbytes,notnumeric,notcommon"`
	Password2 string `validate:"required,eqfield=Password1"`
}

type Login struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

// bcrypt refuses passwords longer than this many bytes.
const maxPasswordBytes = 72

var usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}@.+\-_]+$`)

var commonPasswords = map[string]bool{
	"password": true, "password1": true, "password123": true, "12345678": true,
	"123456789": true, "1234567890": true, "qwerty123": true, "qwertyuiop": true,
	"iloveyou": true, "sunshine": true, "letmein1": true, "football": true,
	"baseball": true, "welcome1": true, "admin123": true, "abc12345": true,
	"princess": true, "trustno1": true, "passw0rd": true, "superman": true,
	"starwars": true, "whatever": true,
}

var messages = map[string]string{
	"required":   "This field is required.",
	"max":        "Ensure this value has at most %s characters.",
	"min":        "This password is too short. It must contain at least %s characters.",
	"username":   "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.",
	"maxbytes":   "This password is too long. It must contain at most 72 bytes.",
	"notnumeric": "This password is entirely numeric.",
	"notcommon":  "This password is too common.",
	"eqfield":    "The two password fields didn't match.",
}

var fieldNames = map[string]string{
	"Username":  "username",
	"Password1": "password1",
	"Password2": "password2",
	"Password":  "password",
}

type Validator struct {
	validate *validator.Validate
	limits   config.Limits
}

func NewValidator(limits config.Limits) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxPasswordBytes
	})
	v.RegisterValidation("notnumeric", func(fl validator.FieldLevel) bool {
		return !allDigits(fl.Field().String())
	})
	v.RegisterValidation("notcommon", func(fl validator.FieldLevel) bool {
		return !commonPasswords[strings.ToLower(fl.Field().String())]
	})
	return &Validator{validate: v, limits: limits}
}

// Post checks a post submission. Create and edit share these rules. Body is
// trimmed in place; a valid upload gets its sniffed media type filled in.
func (v *Validator) Post(in *PostInput) error {
	verr := &ValidationError{}
	in.Body = strings.TrimSpace(in.Body)

	tag := fmt.Sprintf("required,max=%d", v.limits.MaxPostLength)
	if err := v.validate.Var(in.Body, tag); err != nil {
		for _, fe := range err.(validator.ValidationErrors) {
			verr.add("body", message(fe.Tag(), fe.Param()))
		}
	}

	if in.Upload != nil {
		if err := v.upload(in.Upload); err != "" {
			verr.add("attachment", err)
		}
	}
	return verr.orNil()
}

func (v *Validator) upload(u *Upload) string {
	if u.Size == 0 {
		return "The submitted file is empty."
	}
	if u.Size > v.limits.MaxUploadBytes {
		return fmt.Sprintf("The file is too large. It must be at most %d bytes.", v.limits.MaxUploadBytes)
	}

	mt, err := mimetype.DetectReader(u.Content)
	if err != nil {
		return "The submitted file could not be read."
	}
	if _, err := u.Content.Seek(0, io.SeekStart); err != nil {
		return "The submitted file could not be read."
	}

	for _, allowed := range v.limits.AllowedMediaTypes {
		if mt.Is(allowed) {
			u.MediaType = mt.String()
			u.Extension = mt.Extension()
			return ""
		}
	}
	return "Upload a valid image. The file you uploaded was either not an image or a corrupted image."
}

func (v *Validator) Registration(in Registration) error {
	verr := v.structErrors(in)
	if _, bad := verr.Fields["password1"]; !bad && tooSimilar(in.Password1, in.Username) {
		verr.add("password1", "The password is too similar to the username.")
	}
	return verr.orNil()
}

func (v *Validator) Login(in Login) error {
	return v.structErrors(in).orNil()
}

func (v *Validator) structErrors(s any) *ValidationError {
	verr := &ValidationError{}
	err := v.validate.Struct(s)
	if err == nil {
		return verr
	}
	ves, ok := err.(validator.ValidationErrors)
	if !ok {
		verr.add(NonField, err.Error())
		return verr
	}
	for _, fe := range ves {
		name, ok := fieldNames[fe.Field()]
		if !ok {
			name = strings.ToLower(fe.Field())
		}
		verr.add(name, message(fe.Tag(), fe.Param()))
	}
	return verr
}

func message(tag, param string) string {
	msg, ok := messages[tag]
	if !ok {
		return "Enter a valid value."
	}
	if strings.Contains(msg, "%s") {
		return fmt.Sprintf(msg, param)
	}
	return msg
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// tooSimilar flags passwords that contain the username or are contained in it.
func tooSimilar(password, username string) bool {
	p, u := strings.ToLower(password), strings.ToLower(username)
	if utf8.RuneCountInString(u) < 3 {
		return false
	}
	return strings.Contains(p, u) || strings.Contains(u, p)
}
