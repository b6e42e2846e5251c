// Package blackboard is the findings store: typed artifacts made of typed
// attributes, attached to content objects of a data source.
package blackboard

import (
	"fmt"
	"time"
)

// ArtifactType names a kind of finding. The vocabulary is closed.
type ArtifactType string

const (
	ArtifactWebHistory     ArtifactType = "TSK_WEB_HISTORY"
	ArtifactWebBookmark    ArtifactType = "TSK_WEB_BOOKMARK"
	ArtifactRecentObject   ArtifactType = "TSK_RECENT_OBJECT"
	ArtifactWebSearchQuery ArtifactType = "TSK_WEB_SEARCH_QUERY"
	ArtifactOSInfo         ArtifactType = "TSK_OS_INFO"
	ArtifactMetadataExif   ArtifactType = "TSK_METADATA_EXIF"
)

var artifactTypes = map[ArtifactType]string{
	ArtifactWebHistory:     "Web History",
	ArtifactWebBookmark:    "Web Bookmarks",
	ArtifactRecentObject:   "Recent Documents",
	ArtifactWebSearchQuery: "Web Search",
	ArtifactOSInfo:         "Operating System Information",
	ArtifactMetadataExif:   "EXIF Metadata",
}

// ArtifactTypes returns the vocabulary in declaration order.
func ArtifactTypes() []ArtifactType {
	return []ArtifactType{
		ArtifactWebHistory,
		ArtifactWebBookmark,
		ArtifactRecentObject,
		ArtifactWebSearchQuery,
		ArtifactOSInfo,
		ArtifactMetadataExif,
	}
}

// Valid reports whether t belongs to the vocabulary.
func (t ArtifactType) Valid() bool {
	_, ok := artifactTypes[t]
	return ok
}

// DisplayName returns the label shown in listings.
func (t ArtifactType) DisplayName() string {
	if name, ok := artifactTypes[t]; ok {
		return name
	}
	return string(t)
}

// ValueType is the storage type of an attribute value.
type ValueType int

const (
	ValueString ValueType = iota
	ValueInt
	ValueDouble
)

func (v ValueType) String() string {
	switch v {
	case ValueInt:
		return "int"
	case ValueDouble:
		return "double"
	default:
		return "string"
	}
}

// AttributeType names a single kind of value within an artifact.
type AttributeType string

const (
	AttrDateTimeCreated  AttributeType = "TSK_DATETIME_CREATED"
	AttrDateTimeAccessed AttributeType = "TSK_DATETIME_ACCESSED"
	AttrDateTime         AttributeType = "TSK_DATETIME"
	AttrGeoLatitude      AttributeType = "TSK_GEO_LATITUDE"
	AttrGeoLongitude     AttributeType = "TSK_GEO_LONGITUDE"
	AttrGeoAltitude      AttributeType = "TSK_GEO_ALTITUDE"
	AttrDeviceModel      AttributeType = "TSK_DEVICE_MODEL"
	AttrDeviceMake       AttributeType = "TSK_DEVICE_MAKE"
	AttrURL              AttributeType = "TSK_URL"
	AttrTitle            AttributeType = "TSK_TITLE"
	AttrDomain           AttributeType = "TSK_DOMAIN"
	AttrProgName         AttributeType = "TSK_PROG_NAME"
	AttrPath             AttributeType = "TSK_PATH"
	AttrText             AttributeType = "TSK_TEXT"
	AttrVersion          AttributeType = "TSK_VERSION"
	AttrOwner            AttributeType = "TSK_OWNER"
	AttrOrganization     AttributeType = "TSK_ORGANIZATION"
)

var attributeValueTypes = map[AttributeType]ValueType{
	AttrDateTimeCreated:  ValueInt,
	AttrDateTimeAccessed: ValueInt,
	AttrDateTime:         ValueInt,
	AttrGeoLatitude:      ValueDouble,
	AttrGeoLongitude:     ValueDouble,
	AttrGeoAltitude:      ValueDouble,
	AttrDeviceModel:      ValueString,
	AttrDeviceMake:       ValueString,
	AttrURL:              ValueString,
	AttrTitle:            ValueString,
	AttrDomain:           ValueString,
	AttrProgName:         ValueString,
	AttrPath:             ValueString,
	AttrText:             ValueString,
	AttrVersion:          ValueString,
	AttrOwner:            ValueString,
	AttrOrganization:     ValueString,
}

// ValueType returns the declared value type of t and whether t is known.
func (t AttributeType) ValueType() (ValueType, bool) {
	vt, ok := attributeValueTypes[t]
	return vt, ok
}

// Attribute is one typed key-value finding. Source is the module that
// produced it.
type Attribute struct {
	Type   AttributeType
	Source string

	valueType ValueType
	intVal    int64
	doubleVal float64
	stringVal string
}

// NewTimeAttribute records t as integer seconds since the Unix epoch.
func NewTimeAttribute(attrType AttributeType, source string, t time.Time) Attribute {
	return NewIntAttribute(attrType, source, t.Unix())
}

// NewIntAttribute creates an integer attribute.
func NewIntAttribute(attrType AttributeType, source string, v int64) Attribute {
	return Attribute{Type: attrType, Source: source, valueType: ValueInt, intVal: v}
}

// NewDoubleAttribute creates a floating point attribute.
func NewDoubleAttribute(attrType AttributeType, source string, v float64) Attribute {
	return Attribute{Type: attrType, Source: source, valueType: ValueDouble, doubleVal: v}
}

// NewStringAttribute creates a string attribute.
func NewStringAttribute(attrType AttributeType, source string, v string) Attribute {
	return Attribute{Type: attrType, Source: source, valueType: ValueString, stringVal: v}
}

// ValueType returns the type of the stored value.
func (a Attribute) ValueType() ValueType { return a.valueType }

// Int returns the integer value (seconds for datetime attributes).
func (a Attribute) Int() int64 { return a.intVal }

// Double returns the floating point value.
func (a Attribute) Double() float64 { return a.doubleVal }

// String returns the string value, or a rendering of a numeric value.
func (a Attribute) String() string {
	switch a.valueType {
	case ValueInt:
		return fmt.Sprintf("%d", a.intVal)
	case ValueDouble:
		return fmt.Sprintf("%g", a.doubleVal)
	default:
		return a.stringVal
	}
}

// Time returns an integer attribute as a UTC time.
func (a Attribute) Time() time.Time {
	return time.Unix(a.intVal, 0).UTC()
}

// validate checks the attribute against the vocabulary.
func (a Attribute) validate() error {
	want, ok := a.Type.ValueType()
	if !ok {
		return fmt.Errorf("unknown attribute type %q", a.Type)
	}
	if want != a.valueType {
		return fmt.Errorf("attribute %s holds %s, want %s", a.Type, a.valueType, want)
	}
	return nil
}

// Artifact is a named collection of attributes created against one content
// object (a file or the data source itself).
type Artifact struct {
	ID         int64
	ContentRef string
	Type       ArtifactType
	Attributes []Attribute
}

// Attribute returns the first attribute of the given type.
func (a *Artifact) Attribute(t AttributeType) (Attribute, bool) {
	for _, attr := range a.Attributes {
		if attr.Type == t {
			return attr, true
		}
	}
	return Attribute{}, false
}
