package entity

// CRMRecord is one landing-page row pulled from the spreadsheet CRM.
// The CRM is the system of record for category, vertical and the
// team/channel/brand assignment fields.
type CRMRecord struct {
	RecordID        string
	LandingPage     string
	Channel         string
	Team            string
	Brand           string
	PrimaryCategory string
	Vertical        string
	PageStatus      string
}
