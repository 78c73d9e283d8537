package export

import "fmt"

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// Field is a labelled value printed above the tables of a document.
type Field struct {
	Label string
	Value string
}

// Section is a titled table.
type Section struct {
	Title   string
	Dataset Dataset
}

// Document is a titled report made of summary fields followed by tables.
type Document struct {
	Title    string
	Fields   []Field
	Sections []Section
}

func (d Document) validate() error {
	for _, section := range d.Sections {
		if len(section.Dataset.Headers) == 0 {
			return fmt.Errorf("section %q requires at least one header", section.Title)
		}
	}
	return nil
}
