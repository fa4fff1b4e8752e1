package mime

// Details Contains basic information about a detected type
type Details struct {
	Type      string   `json:"type"`
	Catagory  string   `json:"category"`
	SubClass  []string `json:"subclass"`
	Extension string   `json:"extension"`
}
