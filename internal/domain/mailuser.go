package domain

import "time"

// MailUser is a mailbox that authenticates against the external IMAP/MTA service.
// The (username, domain_id) pair is unique. Salt and ShaDigest stay blank until a
// password is set.
type MailUser struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username  string    `json:"username" gorm:"type:varchar(64);uniqueIndex:uniq_mail_users_username_domain,priority:1;not null"`
	Salt      string    `json:"-" gorm:"type:varchar(255);not null;default:''"`
	ShaDigest string    `json:"-" gorm:"column:shadigest;type:varchar(255);not null;default:''"`
	DomainID  string    `json:"domainId" gorm:"type:varchar(36);uniqueIndex:uniq_mail_users_username_domain,priority:2;not null"`
	Domain    *Domain   `json:"domain,omitempty" gorm:"foreignKey:DomainID;constraint:OnDelete:RESTRICT"`
	Active    bool      `json:"active" gorm:"not null;default:true;index"`
	Created   time.Time `json:"created" gorm:"column:created;autoCreateTime;<-:create"`
}

// TableName pins the table name read by the mail server.
func (MailUser) TableName() string { return "mail_users" }

// Email returns username@fqdn, or the bare username when the domain was not loaded.
func (u *MailUser) Email() string {
	if u.Domain == nil {
		return u.Username
	}
	return u.Username + "@" + u.Domain.Fqdn
}

// HasPassword reports whether a credential has been stored.
func (u *MailUser) HasPassword() bool {
	return u.Salt != "" && u.ShaDigest != ""
}

// MailUserView is the API representation of a MailUser.
type MailUserView struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Username    string    `json:"username"`
	Domain      string    `json:"domain"`
	Active      bool      `json:"active"`
	HasPassword bool      `json:"hasPassword"`
	Created     time.Time `json:"created"`
}

// View converts the record to its API representation without credential fields.
func (u *MailUser) View() MailUserView {
	v := MailUserView{
		ID:          u.ID,
		Email:       u.Email(),
		Username:    u.Username,
		Active:      u.Active,
		HasPassword: u.HasPassword(),
		Created:     u.Created,
	}
	if u.Domain != nil {
		v.Domain = u.Domain.Fqdn
	}
	return v
}
