package enums

import "fmt"

// AttributeType is the declared type of an EAV attribute.
type AttributeType string

const (
	AttributeVarchar  AttributeType = "varchar"
	AttributeInteger  AttributeType = "integer"
	AttributeBoolean  AttributeType = "boolean"
	AttributeDate     AttributeType = "date"
	AttributeDatetime AttributeType = "datetime"
)

var validAttributeTypes = []AttributeType{
	AttributeVarchar,
	AttributeInteger,
	AttributeBoolean,
	AttributeDate,
	AttributeDatetime,
}

// IsValid reports whether the value is a known attribute type.
func (t AttributeType) IsValid() bool {
	for _, candidate := range validAttributeTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseAttributeType converts raw input into AttributeType.
func ParseAttributeType(value string) (AttributeType, error) {
	for _, candidate := range validAttributeTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid attribute type %q", value)
}

// ContentType tags the kind of object an attribute value is attached to.
type ContentType string

const (
	ContentSchedule    ContentType = "schedule"
	ContentSegment     ContentType = "segment"
	ContentIssue       ContentType = "issue"
	ContentReservation ContentType = "reservation"
)

var validContentTypes = []ContentType{
	ContentSchedule,
	ContentSegment,
	ContentIssue,
	ContentReservation,
}

// IsValid reports whether the value is a known content type.
func (c ContentType) IsValid() bool {
	for _, candidate := range validContentTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseContentType converts raw input into ContentType.
func ParseContentType(value string) (ContentType, error) {
	for _, candidate := range validContentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid content type %q", value)
}
