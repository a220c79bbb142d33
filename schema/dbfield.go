package schema

import (
	"encoding/json"
	"reflect"

	"gorm.io/microorm/dbtype"
)

// DbField describes a table column as reported by the database
type DbField struct {
	Name         string
	IsPrimary    bool
	IsIdentity   bool
	IsNullable   bool
	Type         reflect.Type
	Size         int
	Precision    int
	Scale        int
	DatabaseType string
	Provider     string
}

type dbFieldJSON struct {
	Name         string `json:"name"`
	IsPrimary    bool   `json:"primary,omitempty"`
	IsIdentity   bool   `json:"identity,omitempty"`
	IsNullable   bool   `json:"nullable,omitempty"`
	Type         string `json:"type,omitempty"`
	Size         int    `json:"size,omitempty"`
	Precision    int    `json:"precision,omitempty"`
	Scale        int    `json:"scale,omitempty"`
	DatabaseType string `json:"databaseType,omitempty"`
	Provider     string `json:"provider,omitempty"`
}

// MarshalJSON stores Type by its registered name, see dbtype.RegisterType
func (f DbField) MarshalJSON() ([]byte, error) {
	return json.Marshal(dbFieldJSON{
		Name:         f.Name,
		IsPrimary:    f.IsPrimary,
		IsIdentity:   f.IsIdentity,
		IsNullable:   f.IsNullable,
		Type:         dbtype.TypeName(f.Type),
		Size:         f.Size,
		Precision:    f.Precision,
		Scale:        f.Scale,
		DatabaseType: f.DatabaseType,
		Provider:     f.Provider,
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (f *DbField) UnmarshalJSON(data []byte) error {
	var v dbFieldJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	t, err := dbtype.TypeByName(v.Type)
	if err != nil {
		return err
	}
	*f = DbField{
		Name:         v.Name,
		IsPrimary:    v.IsPrimary,
		IsIdentity:   v.IsIdentity,
		IsNullable:   v.IsNullable,
		Type:         t,
		Size:         v.Size,
		Precision:    v.Precision,
		Scale:        v.Scale,
		DatabaseType: v.DatabaseType,
		Provider:     v.Provider,
	}
	return nil
}

// UnquotedName returns Name without identifier quotes
func (f *DbField) UnquotedName() string {
	return Unquote(f.Name)
}

// DbFields the columns of one table, in ordinal order
type DbFields []*DbField

// Get finds a column by name, ignoring case and quoting
func (fields DbFields) Get(name string) *DbField {
	key := NormalizeName(name)
	for _, f := range fields {
		if NormalizeName(f.Name) == key {
			return f
		}
	}
	return nil
}

// Primary returns the first primary key column
func (fields DbFields) Primary() *DbField {
	for _, f := range fields {
		if f.IsPrimary {
			return f
		}
	}
	return nil
}

// Identity returns the identity column
func (fields DbFields) Identity() *DbField {
	for _, f := range fields {
		if f.IsIdentity {
			return f
		}
	}
	return nil
}

// Names returns the unquoted column names
func (fields DbFields) Names() []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.UnquotedName()
	}
	return names
}
