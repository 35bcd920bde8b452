package dto

// RosterFormat selects the export encoding.
type RosterFormat string

const (
	RosterFormatCSV RosterFormat = "csv"
	RosterFormatPDF RosterFormat = "pdf"
)

// RosterRequest captures GET /events/:id/report query parameters.
type RosterRequest struct {
	Format RosterFormat `form:"format" validate:"omitempty,oneof=csv pdf"`
}
