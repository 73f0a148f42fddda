package domain

import "time"

// Alias forwards mail from Source to Destination. A source with an empty local part
// ("" or "@example.org") is a catch-all for the whole domain. DomainID only scopes the
// alias for administration; neither endpoint has to exist as a MailUser or Domain.
type Alias struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	DomainID    string    `json:"domainId" gorm:"type:varchar(36);index;not null"`
	Domain      *Domain   `json:"domain,omitempty" gorm:"foreignKey:DomainID;constraint:OnDelete:RESTRICT"`
	Source      string    `json:"source" gorm:"type:varchar(255);uniqueIndex:uniq_aliases_source_destination,priority:1;not null"`
	Destination string    `json:"destination" gorm:"type:varchar(255);uniqueIndex:uniq_aliases_source_destination,priority:2;not null"`
	Active      bool      `json:"active" gorm:"not null;default:true;index"`
	Created     time.Time `json:"created" gorm:"column:created;autoCreateTime;<-:create"`
}

// TableName pins the table name read by the mail server.
func (Alias) TableName() string { return "aliases" }

// IsCatchAll reports whether the source has no local part.
func (a *Alias) IsCatchAll() bool {
	return a.Source == "" || a.Source[0] == '@'
}
