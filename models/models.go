package models

// Column bounds of the schema.
const (
	UsernameMaxLength = 20
	EmailMaxLength    = 50
	NameMaxLength     = 30
	TitleMaxLength    = 100
)

type User struct {
	ID        uint       `gorm:"primaryKey;autoIncrement"`
	Username  string     `gorm:"size:20;uniqueIndex;not null"`
	Password  string     `gorm:"not null"`
	Email     string     `gorm:"size:50;uniqueIndex;not null"`
	FirstName string     `gorm:"size:30;not null"`
	LastName  string     `gorm:"size:30;not null"`
	IsAdmin   bool       `gorm:"not null;default:false"`
	Feedback  []Feedback `gorm:"foreignKey:Username;references:Username;constraint:OnDelete:CASCADE"`
}

func (User) TableName() string { return "users" }

func (u User) FullName() string {
	return u.FirstName + " " + u.LastName
}

type Feedback struct {
	ID      uint   `gorm:"primaryKey;autoIncrement"`
	Title   string `gorm:"size:100;not null;check:length(title) <= 100"`
	Content string `gorm:"type:text;not null"`
	// Username references users.username, the natural key used for ownership.
	Username string `gorm:"size:20;not null;index"`
}

func (Feedback) TableName() string { return "feedback" }
