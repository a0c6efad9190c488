package fundapi

import (
	"bytes"
	"encoding/json"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Ref points at another document. The backend sends either a bare id or a
// populated object; both decode into Ref.
type Ref struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Title string `json:"title,omitempty"`
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = Ref{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = Ref{ID: id}
		return nil
	}
	var obj struct {
		ID    string `json:"id"`
		MID   string `json:"_id"`
		Name  string `json:"name"`
		Title string `json:"title"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*r = Ref{ID: firstNonEmpty(obj.ID, obj.MID), Name: obj.Name, Title: obj.Title}
	return nil
}

// User is the authenticated identity.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	var aux struct {
		plain
		MID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*u = User(aux.plain)
	u.ID = firstNonEmpty(u.ID, aux.MID)
	return nil
}

// Backer is one contribution recorded on a project.
type Backer struct {
	User   Ref             `json:"user"`
	Amount decimal.Decimal `json:"amount"`
	Date   time.Time       `json:"date,omitzero"`
}

// Project is a fundable campaign.
type Project struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	GoalAmount    decimal.Decimal `json:"goalAmount"`
	CurrentAmount decimal.Decimal `json:"currentAmount"`
	EndDate       time.Time       `json:"endDate,omitzero"`
	ImageURL      string          `json:"imageUrl,omitempty"`
	Creator       Ref             `json:"creator"`
	Backers       []Backer        `json:"backers"`
	CreatedAt     time.Time       `json:"createdAt,omitzero"`
}

func (p *Project) UnmarshalJSON(data []byte) error {
	type plain Project
	var aux struct {
		plain
		MID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = Project(aux.plain)
	p.ID = firstNonEmpty(p.ID, aux.MID)
	return nil
}

// Clone returns a deep copy.
func (p Project) Clone() Project {
	p.Backers = slices.Clone(p.Backers)
	return p
}

// Progress returns CurrentAmount/GoalAmount as a percentage capped at 100.
func (p Project) Progress() decimal.Decimal {
	if !p.GoalAmount.IsPositive() {
		return decimal.Zero
	}
	pct := p.CurrentAmount.Div(p.GoalAmount).Mul(decimal.NewFromInt(100))
	return decimal.Min(pct, decimal.NewFromInt(100)).Round(1)
}

// DaysLeft returns whole days until EndDate, never negative.
func (p Project) DaysLeft(now time.Time) int {
	if p.EndDate.IsZero() || !p.EndDate.After(now) {
		return 0
	}
	return int(p.EndDate.Sub(now).Hours() / 24)
}

// Donation is a contribution as listed for the current user.
type Donation struct {
	ID      string          `json:"id"`
	Project Ref             `json:"project"`
	Amount  decimal.Decimal `json:"amount"`
	Date    time.Time       `json:"date,omitzero"`
}

func (d *Donation) UnmarshalJSON(data []byte) error {
	type plain Donation
	var aux struct {
		plain
		MID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*d = Donation(aux.plain)
	d.ID = firstNonEmpty(d.ID, aux.MID)
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
