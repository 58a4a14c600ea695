package plusdomains

// Scopes needed to insert an activity as the delegated user.
const (
	ScopePlusMe          = "https://www.googleapis.com/auth/plus.me"
	ScopePlusStreamWrite = "https://www.googleapis.com/auth/plus.stream.write"
)

// DefaultScopes are the scopes NewDomainPost callers need.
var DefaultScopes = []string{ScopePlusMe, ScopePlusStreamWrite}

// ACL entry types.
const (
	AclTypeDomain = "domain"
	AclTypePerson = "person"
	AclTypeCircle = "circle"
	AclTypePublic = "public"
)

// Activity is a post in a user's stream.
type Activity struct {
	Kind      string          `json:"kind,omitempty"`
	ID        string          `json:"id,omitempty"`
	Title     string          `json:"title,omitempty"`
	URL       string          `json:"url,omitempty"`
	Published string          `json:"published,omitempty"`
	Updated   string          `json:"updated,omitempty"`
	Verb      string          `json:"verb,omitempty"`
	Actor     *Actor          `json:"actor,omitempty"`
	Object    *ActivityObject `json:"object,omitempty"`
	Access    *Acl            `json:"access,omitempty"`
}

// Actor is who performed an activity.
type Actor struct {
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	URL         string `json:"url,omitempty"`
}

// ActivityObject is the content of an activity. Writers set
// OriginalContent; the server fills Content with the rendered HTML.
type ActivityObject struct {
	ObjectType      string `json:"objectType,omitempty"`
	OriginalContent string `json:"originalContent,omitempty"`
	Content         string `json:"content,omitempty"`
}

// Acl controls who can see an activity.
type Acl struct {
	Kind        string `json:"kind,omitempty"`
	Description string `json:"description,omitempty"`

	// DomainRestricted limits visibility to the user's domain. It must be
	// sent even when false would be the zero value, so it is not omitempty.
	DomainRestricted bool       `json:"domainRestricted"`
	Items            []AclEntry `json:"items,omitempty"`
}

// AclEntry is one audience member of an Acl.
type AclEntry struct {
	Type        string `json:"type"`
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// NewDomainPost builds an activity carrying msg that only members of the
// posting user's domain can see.
func NewDomainPost(msg string) *Activity {
	return &Activity{
		Object: &ActivityObject{OriginalContent: msg},
		Access: &Acl{
			DomainRestricted: true,
			Items:            []AclEntry{{Type: AclTypeDomain}},
		},
	}
}

// IsDomainRestricted reports whether a's audience is limited to the domain.
func (a *Activity) IsDomainRestricted() bool {
	return a != nil && a.Access != nil && a.Access.DomainRestricted
}
