// Package command defines the parameterised command compiled functions write to.
package command

import (
	"database/sql"
	"strings"

	"gorm.io/microorm/dbtype"
)

// Direction of a parameter
type Direction int

const (
	Input Direction = iota
	Output
	InputOutput
	ReturnValue
)

func (d Direction) String() string {
	switch d {
	case Output:
		return "Output"
	case InputOutput:
		return "InputOutput"
	case ReturnValue:
		return "ReturnValue"
	}
	return "Input"
}

// Parameter a provider parameter
type Parameter interface {
	ParameterName() string
	SetParameterName(name string)
	Value() interface{}
	SetValue(value interface{})
	SetDbType(dbType dbtype.DbType)
	SetDirection(direction Direction)
	SetSize(size int)
	SetPrecision(precision int)
	SetScale(scale int)
}

// ProviderTypeSetter is implemented by parameters accepting provider specific type names
type ProviderTypeSetter interface {
	SetProviderType(provider, typeName string)
}

// ParameterCollection the parameters of a command, in insertion order
type ParameterCollection interface {
	Clear()
	Add(p Parameter)
	Get(name string) Parameter
	Len() int
	All() []Parameter
}

// Command creates and holds parameters
type Command interface {
	CreateParameter() Parameter
	Parameters() ParameterCollection
}

// Param default Parameter implementation
type Param struct {
	name          string
	value         interface{}
	dbType        dbtype.DbType
	hasDbType     bool
	direction     Direction
	size          int
	precision     int
	scale         int
	providerTypes map[string]string
}

func (p *Param) ParameterName() string { return p.name }
func (p *Param) SetParameterName(name string) { p.name = name }
func (p *Param) Value() interface{} { return p.value }
func (p *Param) SetValue(value interface{}) { p.value = value }
func (p *Param) SetDirection(direction Direction) { p.direction = direction }
func (p *Param) SetSize(size int) { p.size = size }
func (p *Param) SetPrecision(precision int) { p.precision = precision }
func (p *Param) SetScale(scale int) { p.scale = scale }

func (p *Param) SetDbType(dbType dbtype.DbType) {
	p.dbType = dbType
	p.hasDbType = true
}

// DbType returns the assigned DbType, false when none was assigned
func (p *Param) DbType() (dbtype.DbType, bool) { return p.dbType, p.hasDbType }

func (p *Param) Direction() Direction { return p.direction }
func (p *Param) Size() int { return p.size }
func (p *Param) Precision() int { return p.precision }
func (p *Param) Scale() int { return p.scale }

func (p *Param) SetProviderType(provider, typeName string) {
	if p.providerTypes == nil {
		p.providerTypes = map[string]string{}
	}
	p.providerTypes[provider] = typeName
}

// ProviderType returns the type name assigned for provider
func (p *Param) ProviderType(provider string) string {
	return p.providerTypes[provider]
}

// Params default ParameterCollection; names are matched ignoring case
type Params struct {
	list  []Parameter
	index map[string]int
}

func (ps *Params) Clear() {
	ps.list = ps.list[:0]
	ps.index = nil
}

// Add appends p; a parameter with the same name is replaced in place
func (ps *Params) Add(p Parameter) {
	if ps.index == nil {
		ps.index = map[string]int{}
	}
	key := strings.ToLower(p.ParameterName())
	if idx, ok := ps.index[key]; ok {
		ps.list[idx] = p
		return
	}
	ps.index[key] = len(ps.list)
	ps.list = append(ps.list, p)
}

func (ps *Params) Get(name string) Parameter {
	if idx, ok := ps.index[strings.ToLower(name)]; ok {
		return ps.list[idx]
	}
	return nil
}

func (ps *Params) Len() int { return len(ps.list) }

func (ps *Params) All() []Parameter { return append([]Parameter(nil), ps.list...) }

// Cmd default Command: SQL text plus parameters
type Cmd struct {
	Text   string
	params Params
}

// New returns a command for text
func New(text string) *Cmd {
	return &Cmd{Text: text}
}

func (c *Cmd) CreateParameter() Parameter {
	return &Param{direction: Input}
}

func (c *Cmd) Parameters() ParameterCollection {
	return &c.params
}

// Args returns the parameter values as database/sql arguments. Named arguments
// use sql.Named; output parameters are bound through sql.Out to the parameter's value.
func (c *Cmd) Args(named bool) []interface{} {
	args := make([]interface{}, 0, len(c.params.list))
	for _, p := range c.params.list {
		value := p.Value()
		if param, ok := p.(*Param); ok && param.direction != Input {
			value = sql.Out{Dest: &param.value, In: param.direction == InputOutput}
		}
		if named {
			args = append(args, sql.Named(p.ParameterName(), value))
		} else {
			args = append(args, value)
		}
	}
	return args
}

// Values returns parameter values by name
func (c *Cmd) Values() map[string]interface{} {
	values := make(map[string]interface{}, len(c.params.list))
	for _, p := range c.params.list {
		values[p.ParameterName()] = p.Value()
	}
	return values
}
