package verify

import "errors"

var (
	// ErrNavigationTimeout indicates the page did not reach DOMContentLoaded in time.
	ErrNavigationTimeout = errors.New("navigation timeout")
	// ErrNavigationFailed indicates the browser reported a navigation error.
	ErrNavigationFailed = errors.New("navigation failed")
	// ErrElementNotFound indicates the awaited element never appeared.
	ErrElementNotFound = errors.New("element not found")
	// ErrScreenshotUnsupported is returned by backends that cannot capture pages.
	ErrScreenshotUnsupported = errors.New("screenshot unsupported")
	// ErrBrowserLaunch indicates the shared browser could not be started.
	ErrBrowserLaunch = errors.New("browser launch failed")
	// ErrPageClosed is returned when a page is used after Close.
	ErrPageClosed = errors.New("page closed")
)
