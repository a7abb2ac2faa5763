// Package pioline controls single GPIO lines of AT91-style SoCs through the
// sysfs gpio interface: exporting and configuring a line, reading and writing
// its level, and watching hardware edge interrupts with software debouncing
// of mechanically noisy inputs such as buttons and switches.
//
// Interrupt delivery rides on one process-wide epoll loop. Every watched
// line registers its value descriptor for priority readiness events; the
// loop dispatches sequentially, so for a single line no event is processed
// before the previous dispatch and re-arm completed. Debouncing switches the
// registration to one-shot and re-arms it only after the configured settle
// window, which coalesces a whole contact bounce burst into exactly one
// notification.
package pioline
