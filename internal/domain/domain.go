package domain

import "time"

// Domain is a virtual mail domain. Fqdn is stored lower-cased and is unique.
type Domain struct {
	ID      string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Fqdn    string    `json:"fqdn" gorm:"column:fqdn;type:varchar(253);uniqueIndex:uniq_domains_fqdn;not null"`
	Active  bool      `json:"active" gorm:"not null;default:true;index"`
	Created time.Time `json:"created" gorm:"column:created;autoCreateTime;<-:create"`
}

// TableName pins the table name read by the mail server.
func (Domain) TableName() string { return "domains" }

// DomainSummary is a Domain together with the number of records it owns.
type DomainSummary struct {
	Domain
	MailUserCount int `json:"mailUserCount"`
	AliasCount    int `json:"aliasCount"`
}
