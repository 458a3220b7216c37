package directory

import "time"

// userAccountControl flag bits used by account management.
const (
	UACAccountDisabled      int64 = 0x00000002
	UACPasswordNotRequired  int64 = 0x00000020
	UACNormalAccount        int64 = 0x00000200
	UACWorkstationTrust     int64 = 0x00001000
	UACServerTrust          int64 = 0x00002000
	UACPasswordNeverExpires int64 = 0x00010000
	UACSmartCardRequired    int64 = 0x00040000
	UACPasswordExpired      int64 = 0x00800000
)

// User is a directory user account.
type User struct {
	DN                   string    `json:"dn"`
	GUID                 string    `json:"guid"`
	SID                  string    `json:"sid"`
	SAMAccountName       string    `json:"sAMAccountName"`
	UserPrincipalName    string    `json:"userPrincipalName"`
	DisplayName          string    `json:"displayName"`
	GivenName            string    `json:"givenName"`
	Surname              string    `json:"surname"`
	Mail                 string    `json:"mail"`
	Description          string    `json:"description"`
	Enabled              bool      `json:"enabled"`
	Locked               bool      `json:"locked"`
	PasswordNeverExpires bool      `json:"passwordNeverExpires"`
	PasswordLastSet      time.Time `json:"passwordLastSet,omitzero"`
	LastLogon            time.Time `json:"lastLogon,omitzero"`
	WhenCreated          time.Time `json:"whenCreated,omitzero"`
	MemberOf             []string  `json:"memberOf,omitempty"`
}

// Group is a directory security or distribution group.
type Group struct {
	DN             string   `json:"dn"`
	GUID           string   `json:"guid"`
	SID            string   `json:"sid"`
	Name           string   `json:"name"`
	SAMAccountName string   `json:"sAMAccountName"`
	Description    string   `json:"description"`
	GroupType      int64    `json:"groupType"`
	MemberDNs      []string `json:"memberDNs,omitempty"`
}

// GroupMember is a resolved member of a group.
type GroupMember struct {
	DN             string `json:"dn"`
	Name           string `json:"name"`
	SAMAccountName string `json:"sAMAccountName"`
	ObjectClass    string `json:"objectClass"` // "user", "group" or "computer"
}

// OU is an organizational unit.
type OU struct {
	DN          string `json:"dn"`
	GUID        string `json:"guid"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ParentDN    string `json:"parentDN"`
	HasChildren bool   `json:"hasChildren"`
}

// OUObject is any object living directly under an OU.
type OUObject struct {
	DN          string `json:"dn"`
	Name        string `json:"name"`
	ObjectClass string `json:"objectClass"`
	Description string `json:"description"`
}

// Computer is a directory computer account.
type Computer struct {
	DN              string    `json:"dn"`
	GUID            string    `json:"guid"`
	Name            string    `json:"name"`
	DNSHostName     string    `json:"dnsHostName"`
	OperatingSystem string    `json:"operatingSystem"`
	OSVersion       string    `json:"osVersion"`
	Enabled         bool      `json:"enabled"`
	LastLogon       time.Time `json:"lastLogon,omitzero"`
	WhenCreated     time.Time `json:"whenCreated,omitzero"`
}

// GPOStatus is the interpretation of a group policy container's flags.
type GPOStatus string

const (
	GPOStatusEnabled              GPOStatus = "enabled"
	GPOStatusUserSettingsDisabled GPOStatus = "user_settings_disabled"
	GPOStatusComputerDisabled     GPOStatus = "computer_settings_disabled"
	GPOStatusAllDisabled          GPOStatus = "all_settings_disabled"
)

// GPO is a group policy object.
type GPO struct {
	DN          string    `json:"dn"`
	GUID        string    `json:"guid"` // The policy's CN, braces included
	DisplayName string    `json:"displayName"`
	Status      GPOStatus `json:"status"`
	FileSysPath string    `json:"fileSysPath"`
	Version     int64     `json:"version"`
	WhenCreated time.Time `json:"whenCreated,omitzero"`
	WhenChanged time.Time `json:"whenChanged,omitzero"`
}

// DNSZone is a DNS zone hosted in the directory.
type DNSZone struct {
	DN        string `json:"dn"`
	Name      string `json:"name"`
	Partition string `json:"partition"` // "domain" or "forest"
}

// DNSRecord is one record of a DNS node, decoded from its binary form.
// Records whose type has no decoder keep their data hex-encoded in Value
// with Raw set.
type DNSRecord struct {
	NodeDN string `json:"nodeDN"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Value  string `json:"value"`
	TTL    uint32 `json:"ttl"`
	Serial uint32 `json:"serial"`
	Raw    bool   `json:"raw,omitempty"`
}

// PasswordPolicy is the domain's effective password ageing policy.
type PasswordPolicy struct {
	MaxPasswordAgeDays int `json:"maxPasswordAgeDays"`
}
