package template

import "github.com/smilemakc/prana/internal/domain"

func newTemplateErr(msg string) *domain.Error {
	return domain.NewError(domain.ErrTemplateError, msg, nil)
}

func newLimitErr(msg string) *domain.Error {
	return domain.NewError(domain.ErrTemplateLimit, msg, nil)
}
