package store

import "time"

// Job is one scraped job listing. ID is the primary key and is stable across
// acquisition runs; when the provider omits it, DeriveID builds one from the
// source site and the tail of the listing URL.
type Job struct {
	ID           string    `json:"id"`
	Site         string    `json:"site"`
	JobURL       string    `json:"job_url"`
	JobURLDirect string    `json:"job_url_direct"`
	Title        string    `json:"title"`
	Company      string    `json:"company"`
	Location     string    `json:"location"`
	DatePosted   string    `json:"date_posted"`
	JobType      string    `json:"job_type"`
	SalarySource string    `json:"salary_source"`
	Interval     string    `json:"interval"`
	MinAmount    float64   `json:"min_amount"`
	MaxAmount    float64   `json:"max_amount"`
	Currency     string    `json:"currency"`
	IsRemote     bool      `json:"is_remote"`
	JobLevel     string    `json:"job_level"`
	JobFunction  string    `json:"job_function"`
	ListingType  string    `json:"listing_type"`
	Emails       string    `json:"emails"`
	Description  string    `json:"description"`
	CompanyURL   string    `json:"company_url"`
	DateScraped  time.Time `json:"date_scraped"`
	SearchQuery  string    `json:"search_query"`
}

// DeriveID returns the listing's stable identifier, synthesizing
// "<site>_<url tail>" when the provider did not supply one.
func (j Job) DeriveID() string {
	if j.ID != "" {
		return j.ID
	}
	site := j.Site
	if site == "" {
		site = "unknown"
	}
	url := j.JobURL
	if len(url) > 20 {
		url = url[len(url)-20:]
	}
	return site + "_" + url
}
