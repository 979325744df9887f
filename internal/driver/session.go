package driver

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tebeka/selenium"
)

// service is a running WebDriver process.
type service interface {
	Stop() error
}

// Session is a live browser under automated control. It embeds the
// WebDriver so it can be handed to page objects directly.
type Session struct {
	selenium.WebDriver

	// Browser is the browser the session drives.
	Browser string
	// Executor is the base URL of the WebDriver endpoint.
	Executor string

	service service

	once    sync.Once
	quitErr error
}

// Quit closes the browser and stops the driver service the session started.
// The service is stopped even when closing the browser fails. Calling Quit
// more than once returns the first result.
func (s *Session) Quit() error {
	s.once.Do(func() {
		var errs []error
		if err := s.WebDriver.Quit(); err != nil {
			errs = append(errs, fmt.Errorf("quitting browser: %w", err))
		}
		if s.service != nil {
			if err := s.service.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("stopping driver service: %w", err))
			}
		}
		s.quitErr = errors.Join(errs...)
	})
	return s.quitErr
}

// configure applies the session-wide timeouts.
func (s *Session) configure() error {
	if err := s.SetImplicitWaitTimeout(ImplicitWait); err != nil {
		return fmt.Errorf("setting implicit wait: %w", err)
	}
	if err := s.SetPageLoadTimeout(PageLoadTimeout); err != nil {
		return fmt.Errorf("setting page load timeout: %w", err)
	}
	return nil
}
