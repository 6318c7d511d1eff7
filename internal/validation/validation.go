package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	personNamePattern = regexp.MustCompile(`^[a-zA-Zа-яА-Я\s]+$`)
	phonePattern      = regexp.MustCompile(`^[+]?[0-9\s\-()]+$`)
	indexPattern      = regexp.MustCompile(`\[\d+\]`)
)

// Error is the first rule a request body failed.
type Error struct {
	// Field is the JSON path of the failing field, e.g. "items.price"
	Field string

	// Tag is the failed rule
	Tag string

	// Message is safe to return to the client
	Message string
}

func (e *Error) Error() string { return e.Message }

// Validator validates request DTOs.
type Validator struct {
	v *validator.Validate
}

// New creates a Validator with the storefront's custom rules registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	// Registration only fails for empty tags or nil functions.
	_ = v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return personNamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	v.RegisterStructValidation(productImagesRequired, ProductRequest{})

	return &Validator{v: v}
}

// Struct validates s and returns an *Error describing the first failure.
func (val *Validator) Struct(s any) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validation failed: %w", err)
	}

	fe := verrs[0]
	field := fieldPath(fe.Namespace())
	return &Error{
		Field:   field,
		Tag:     fe.Tag(),
		Message: message(field, fe.Tag()),
	}
}

// fieldPath turns "OrderRequest.items[2].price" into "items.price".
func fieldPath(namespace string) string {
	_, rest, found := strings.Cut(namespace, ".")
	if !found {
		return namespace
	}
	return indexPattern.ReplaceAllString(rest, "")
}

func message(field, tag string) string {
	if msg, ok := messages[field+"."+tag]; ok {
		return msg
	}
	if tag == "required" {
		return "Missing required field: " + field
	}
	return "Invalid value for field: " + field
}

// messages maps "field.tag" to the client-facing text.
var messages = map[string]string{
	// Login
	"username.max": "Username must be less than 50 characters",
	"password.max": "Password must be less than 100 characters",

	// Order
	"firstName.max":         "First name must be less than 50 characters",
	"firstName.personname":  "First name can only contain letters and spaces",
	"middleName.max":        "Middle name must be less than 50 characters",
	"middleName.personname": "Middle name can only contain letters and spaces",
	"lastName.max":          "Last name must be less than 50 characters",
	"lastName.personname":   "Last name can only contain letters and spaces",
	"address.min":           "Address must be at least 5 characters",
	"address.max":           "Address must be less than 200 characters",
	"phone.min":             "Phone number must be at least 8 characters",
	"phone.max":             "Phone number must be less than 20 characters",
	"phone.phone":           "Phone number can only contain numbers, spaces, hyphens, parentheses, and +",
	"municipality.max":      "Municipality must be less than 100 characters",
	"city.max":              "City must be less than 100 characters",
	"country.max":           "Country must be less than 100 characters",
	"items.min":             "At least one item is required",
	"items.id.required":     "Product ID is required",
	"items.name.required":   "Product name is required",
	"items.price.gt":        "Price must be positive",
	"items.quantity.gt":     "Quantity must be a positive integer",
	"totalPrice.gt":         "Total price must be positive",
	"status.oneof":          "Invalid order status",

	// Product
	"name.max":               "Name must be less than 100 characters",
	"brand.max":              "Brand must be less than 50 characters",
	"description.max":        "Description must be less than 1000 characters",
	"image_url.url":          "Must be a valid URL",
	"image_urls.url":         "Must be a valid URL",
	"image_urls.max":         "Maximum 10 images allowed",
	"image_url.images":       "At least one image URL is required",
	"top_notes.max":          "Maximum 20 top notes allowed",
	"heart_notes.max":        "Maximum 20 heart notes allowed",
	"base_notes.max":         "Maximum 20 base notes allowed",
	"variants.min":           "At least one variant is required",
	"variants.size.required": "Size is required",
	"variants.price.gt":      "Price must be positive",
	"variants.price.lte":     "Price must be less than 10,000",
	"variants.stock.gte":     "Stock cannot be negative",
	"rating.gte":             "Rating must be between 0 and 5",
	"rating.lte":             "Rating must be between 0 and 5",
}
