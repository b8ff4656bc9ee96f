package service

import (
	"regexp"

	"github.com/asaskevich/govalidator"
	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/jordansmalls/cs/internal/auth"
)

// Input field names, as they appear in request bodies.
const (
	FieldUsername        = "username"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldIdentifier      = "identifier"
	FieldCurrentPassword = "currentPassword"
	FieldNewPassword     = "newPassword"
)

// Username and password bounds.
const (
	UsernameMinLength = 3
	UsernameMaxLength = 20
	PasswordMinLength = 6
)

// Validation messages.
const (
	MsgAllFieldsRequired      = "All fields are required"
	MsgLoginFieldsRequired    = "All fields are required."
	MsgInvalidEmail           = "Please enter a valid email"
	MsgPasswordTooShort       = "Password must be at least 6 characters"
	MsgPasswordTooLong        = "Password must be at most 72 bytes"
	MsgUsernameLength         = "Username must be between 3 and 20 characters"
	MsgUsernameCharset        = "Username can only contain letters, numbers, and underscores"
	MsgUpdateNoFields         = "Please provide at least one field to update."
	MsgUpdateInvalidEmail     = "Please enter a valid email."
	MsgUpdateUsernameLength   = "Username must be between 3 and 20 characters."
	MsgUpdateUsernameCharset  = "Username can only contain letters, numbers, and underscores."
	MsgPasswordFieldsRequired = "Current password and new password are required."
	MsgNewPasswordTooShort    = "New password must be at least 6 characters."
	MsgNewPasswordTooLong     = "New password must be at most 72 bytes."
	MsgCurrentPasswordWrong   = "Current password is incorrect."
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// Rule sets. Each list stops at its first failing rule; empty values are
// left to the required checks.
func emailRules(msg string) []validation.Rule {
	return []validation.Rule{
		validation.NewStringRule(govalidator.IsEmail, msg),
	}
}

func usernameRules(lengthMsg, charsetMsg string) []validation.Rule {
	return []validation.Rule{
		validation.RuneLength(UsernameMinLength, UsernameMaxLength).Error(lengthMsg),
		validation.Match(usernamePattern).Error(charsetMsg),
	}
}

func passwordRules(shortMsg, longMsg string) []validation.Rule {
	return []validation.Rule{
		validation.RuneLength(PasswordMinLength, 0).Error(shortMsg),
		validation.Length(0, auth.MaxPasswordBytes).Error(longMsg),
	}
}

// check runs rules against value and appends a violation for field on failure.
func check(violations []Violation, field, value string, rules ...validation.Rule) []Violation {
	if err := validation.Validate(value, rules...); err != nil {
		return append(violations, Violation{Field: field, Message: err.Error()})
	}
	return violations
}

// required appends a violation with msg for every empty field.
// fields alternates name and value.
func required(msg string, fields ...string) []Violation {
	var violations []Violation
	for i := 0; i+1 < len(fields); i += 2 {
		if fields[i+1] == "" {
			violations = append(violations, Violation{Field: fields[i], Message: msg})
		}
	}
	return violations
}

// validateRegister checks registration input in a fixed order: presence,
// email, password, username.
func validateRegister(in RegisterInput) error {
	if v := required(MsgAllFieldsRequired,
		FieldUsername, in.Username,
		FieldEmail, in.Email,
		FieldPassword, in.Password,
	); len(v) > 0 {
		return newValidationError(v)
	}

	var v []Violation
	v = check(v, FieldEmail, in.Email, emailRules(MsgInvalidEmail)...)
	v = check(v, FieldPassword, in.Password, passwordRules(MsgPasswordTooShort, MsgPasswordTooLong)...)
	v = check(v, FieldUsername, in.Username, usernameRules(MsgUsernameLength, MsgUsernameCharset)...)
	return newValidationError(v)
}

// validateLogin checks login input presence.
func validateLogin(in LoginInput) error {
	return newValidationError(required(MsgLoginFieldsRequired,
		FieldIdentifier, in.Identifier,
		FieldPassword, in.Password,
	))
}

// validateUpdateProfile checks the supplied profile fields.
func validateUpdateProfile(in UpdateProfileInput) error {
	if in.Username == "" && in.Email == "" {
		return fieldError(FieldUsername, MsgUpdateNoFields)
	}

	var v []Violation
	if in.Email != "" {
		v = check(v, FieldEmail, in.Email, emailRules(MsgUpdateInvalidEmail)...)
	}
	if in.Username != "" {
		v = check(v, FieldUsername, in.Username, usernameRules(MsgUpdateUsernameLength, MsgUpdateUsernameCharset)...)
	}
	return newValidationError(v)
}

// validateChangePassword checks password change input.
func validateChangePassword(in ChangePasswordInput) error {
	if v := required(MsgPasswordFieldsRequired,
		FieldCurrentPassword, in.CurrentPassword,
		FieldNewPassword, in.NewPassword,
	); len(v) > 0 {
		return newValidationError(v)
	}

	var v []Violation
	v = check(v, FieldNewPassword, in.NewPassword, passwordRules(MsgNewPasswordTooShort, MsgNewPasswordTooLong)...)
	return newValidationError(v)
}
