// Package mapping converts between persisted entities and their wire shapes. Fields
// correspond by name; anything that does not is handled by a profile's hooks.
package mapping

import (
	"github.com/jokizilla/jokizilla/internal/common/apperrors"
	"github.com/mitchellh/mapstructure"
)

var ErrMapping apperrors.Error = apperrors.New("unable to map object")

// Profile holds the correspondences of one resource: entity E, view V and update U.
type Profile[E, V, U any] struct {
	// hooks run after the field-by-name copy
	afterView   func(e *E, v *V)
	afterUpdate func(e *E, u *U)
	afterApply  func(u *U, e *E)
}

func NewProfile[E, V, U any]() *Profile[E, V, U] {
	return &Profile[E, V, U]{}
}

func (p *Profile[E, V, U]) AfterView(fn func(e *E, v *V)) *Profile[E, V, U] {
	p.afterView = fn
	return p
}

func (p *Profile[E, V, U]) AfterUpdate(fn func(e *E, u *U)) *Profile[E, V, U] {
	p.afterUpdate = fn
	return p
}

func (p *Profile[E, V, U]) AfterApply(fn func(u *U, e *E)) *Profile[E, V, U] {
	p.afterApply = fn
	return p
}

// View maps an entity onto a new view.
func (p *Profile[E, V, U]) View(e *E) (*V, apperrors.Error) {
	v := new(V)
	if err := Copy(e, v); err != nil {
		return nil, err
	}
	if p.afterView != nil {
		p.afterView(e, v)
	}
	return v, nil
}

// Views maps a list of entities.
func (p *Profile[E, V, U]) Views(es []E) ([]V, apperrors.Error) {
	vs := make([]V, 0, len(es))
	for i := range es {
		v, err := p.View(&es[i])
		if err != nil {
			return nil, err
		}
		vs = append(vs, *v)
	}
	return vs, nil
}

// Update materializes the writable state of an entity.
func (p *Profile[E, V, U]) Update(e *E) (*U, apperrors.Error) {
	u := new(U)
	if err := Copy(e, u); err != nil {
		return nil, err
	}
	if p.afterUpdate != nil {
		p.afterUpdate(e, u)
	}
	return u, nil
}

// Apply copies every field of u onto e. Fields u does not carry, such as the key, are
// left alone.
func (p *Profile[E, V, U]) Apply(u *U, e *E) apperrors.Error {
	if err := Copy(u, e); err != nil {
		return err
	}
	if p.afterApply != nil {
		p.afterApply(u, e)
	}
	return nil
}

// Copy decodes src onto dst by field name. Nil pointers in src clear the destination.
func Copy(src, dst any) apperrors.Error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ZeroFields: true,
		Result:     dst,
	})
	if err != nil {
		return ErrMapping.Err(err)
	}
	if err := dec.Decode(src); err != nil {
		return ErrMapping.Err(err)
	}
	return nil
}
