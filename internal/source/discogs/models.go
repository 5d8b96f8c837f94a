package discogs

// Page represents one page of a collection folder listing.
type Page struct {
	Pagination Pagination `json:"pagination"`
	Releases   []Release  `json:"releases"`
}

type Pagination struct {
	Page    int `json:"page"`
	Pages   int `json:"pages"`
	PerPage int `json:"per_page"`
	Items   int `json:"items"`
}

// Release is one collection instance as returned by the folder listing.
type Release struct {
	ID               int64            `json:"id"`
	InstanceID       int64            `json:"instance_id"`
	FolderID         int              `json:"folder_id"`
	Rating           int              `json:"rating"`
	DateAdded        string           `json:"date_added"`
	BasicInformation BasicInformation `json:"basic_information"`
	Notes            []Note           `json:"notes"`
}

type BasicInformation struct {
	ID         int64    `json:"id"`
	Title      string   `json:"title"`
	Year       int      `json:"year"`
	CoverImage string   `json:"cover_image"`
	Thumb      string   `json:"thumb"`
	Artists    []Entity `json:"artists"`
	Labels     []Entity `json:"labels"`
	Formats    []Format `json:"formats"`
	Genres     []string `json:"genres"`
	Styles     []string `json:"styles"`
}

type Entity struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Format struct {
	Name         string   `json:"name"`
	Qty          string   `json:"qty"`
	Text         string   `json:"text"`
	Descriptions []string `json:"descriptions"`
}

// Note is a custom field value attached to an instance.
type Note struct {
	FieldID int    `json:"field_id"`
	Value   string `json:"value"`
}

type FieldDefinition struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Position int    `json:"position"`
	Public   bool   `json:"public"`
}

type fieldsResponse struct {
	Fields []FieldDefinition `json:"fields"`
}
