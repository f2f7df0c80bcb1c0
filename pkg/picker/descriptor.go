package picker

// Descriptor configures a picker for one entity type.
type Descriptor struct {
	Entity EntityType

	// Attributes are the columns searched with a substring match.
	Attributes []string

	// LabelFields are the columns fetched to render a label. They may include
	// joined columns the engine knows how to resolve, such as owner_name.
	LabelFields []string

	// Label renders the display text for a row. Search and ResolveLabel both
	// use it, so a key always renders the same way.
	Label func(Record) string
}

// Users lists users as "{name} - {email}".
var Users = Descriptor{
	Entity:      EntityUser,
	Attributes:  []string{"name", "email", "id"},
	LabelFields: []string{"name", "email"},
	Label: func(r Record) string {
		return r.Field("name") + " - " + r.Field("email")
	},
}

// Posts lists posts as "{title} - {owner name}".
var Posts = Descriptor{
	Entity:      EntityPost,
	Attributes:  []string{"title", "description", "id"},
	LabelFields: []string{"title", "owner_name"},
	Label: func(r Record) string {
		return r.Field("title") + " - " + r.Field("owner_name")
	},
}

// Descriptors returns the built-in descriptors.
func Descriptors() []Descriptor {
	return []Descriptor{Users, Posts}
}
