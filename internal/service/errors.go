// Package service реализует бизнес-логику сервиса ticketpay: сверку аккаунтов
// продавцов по вебхукам процессора, синхронизацию баланса и жизненный цикл предложений билетов.
package service

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated возвращается, если личность вызывающего не установлена.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUnavailable возвращается при сбое внешнего процессора или хранилища.
	ErrUnavailable = errors.New("service unavailable")
	// ErrForbidden возвращается, если вызывающий не вправе выполнять операцию над записью.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput возвращается при некорректных входных данных.
	ErrInvalidInput = errors.New("invalid input")
	// ErrOfferNotFound возвращается, если предложение не найдено.
	ErrOfferNotFound = errors.New("offer not found")
	// ErrOfferNotPending возвращается при попытке перевести предложение из конечного статуса.
	ErrOfferNotPending = errors.New("offer is not pending")
)

// BusinessError описывает отказ внешней операции, сообщение которого показывается пользователю.
type BusinessError struct {
	UserMessage string
	Detail      string
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("business error: %s", e.UserMessage)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
