package httpapi

import (
	"encoding/json"
	"net/http"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (t tokenRequest) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.Username, validation.Required, validation.Length(1, 190)),
		validation.Field(&t.Password, validation.Required),
	)
}

type collectionCreateRequest struct {
	Slug        string  `json:"slug"`
	Name        string  `json:"name"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Protected   bool    `json:"protected"`
}

func (c collectionCreateRequest) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Slug, validation.Required, validation.Length(1, 190), validation.Match(slugPattern)),
		validation.Field(&c.Name, validation.Required, validation.Length(1, 255)),
	)
}

type collectionUpdateRequest struct {
	Slug        *string `json:"slug"`
	Name        *string `json:"name"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Protected   *bool   `json:"protected"`
}

func (c collectionUpdateRequest) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Slug, validation.NilOrNotEmpty, validation.Length(1, 190), validation.Match(slugPattern)),
		validation.Field(&c.Name, validation.NilOrNotEmpty, validation.Length(1, 255)),
	)
}

type cloneRequest struct {
	WithAssets  bool    `json:"with_assets"`
	Slug        *string `json:"slug"`
	Name        *string `json:"name"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Protected   *bool   `json:"protected"`
}

func (c cloneRequest) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Slug, validation.NilOrNotEmpty, validation.Length(1, 190), validation.Match(slugPattern)),
		validation.Field(&c.Name, validation.NilOrNotEmpty, validation.Length(1, 255)),
	)
}

type displayModeRequest struct {
	Mode      string `json:"mode"`
	Composite bool   `json:"composite"`
}

func (d displayModeRequest) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Mode, validation.Required, validation.Length(1, 100)),
	)
}

type addChildRequest struct {
	ChildID      int64   `json:"child_id"`
	ShowMetadata *bool   `json:"show_metadata"`
	SortOrder    *int    `json:"sort_order"`
	DisplayMode  *string `json:"display_mode"`
}

func (a addChildRequest) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.ChildID, validation.Required, validation.Min(int64(1))),
		validation.Field(&a.DisplayMode, validation.NilOrNotEmpty),
	)
}

type relationshipUpdateRequest struct {
	ShowMetadata *bool   `json:"show_metadata"`
	SortOrder    *int    `json:"sort_order"`
	DisplayMode  *string `json:"display_mode"`
}

func (r relationshipUpdateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.DisplayMode, validation.NilOrNotEmpty),
	)
}

type addAssetRequest struct {
	AssetID     int64   `json:"asset_id"`
	DisplayName *string `json:"display_name"`
	Description *string `json:"description"`
	SortOrder   *int    `json:"sort_order"`
}

func (a addAssetRequest) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.AssetID, validation.Required, validation.Min(int64(1))),
	)
}

type membershipUpdateRequest struct {
	DisplayName        *string `json:"display_name"`
	Description        *string `json:"description"`
	SortOrder          *int    `json:"sort_order"`
	CopyFromCollection *int64  `json:"copy_from_collection"`
}

type groupCreateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	DisplayMode string  `json:"display_mode"`
}

func (g groupCreateRequest) Validate() error {
	return validation.ValidateStruct(&g,
		validation.Field(&g.Name, validation.NilOrNotEmpty, validation.Length(1, 255)),
	)
}

type groupAddAssetRequest struct {
	MembershipID int64 `json:"membership_id"`
	SortOrder    int   `json:"sort_order"`
}

func (g groupAddAssetRequest) Validate() error {
	return validation.ValidateStruct(&g,
		validation.Field(&g.MembershipID, validation.Required, validation.Min(int64(1))),
	)
}

type groupSortOrderRequest struct {
	SortOrder int `json:"sort_order"`
}

type importAssetRequest struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
}

func (i importAssetRequest) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Path, validation.Required),
	)
}

type ipWhitelistRequest struct {
	IPAddress   string  `json:"ip_address"`
	Description *string `json:"description"`
}

func (i ipWhitelistRequest) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.IPAddress, validation.Required, validation.Length(1, 64)),
	)
}

type ipWhitelistStatusRequest struct {
	Active bool `json:"active"`
}

// decodeJSON unmarshals the body and, when the payload implements Validate,
// runs validation. Errors are written to the response; the bool tells the
// handler whether to continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "request body is not valid JSON", nil)
		return false
	}
	if v, ok := dst.(validation.Validatable); ok {
		if err := v.Validate(); err != nil {
			details := map[string]any{}
			if verrs, ok := err.(validation.Errors); ok {
				for field, ferr := range verrs {
					details[field] = ferr.Error()
				}
			}
			writeError(w, http.StatusBadRequest, "invalid_payload", "request payload failed validation", details)
			return false
		}
	}
	return true
}
