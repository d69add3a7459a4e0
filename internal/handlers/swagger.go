package handlers

// @title Kiosk Sync Local API
// @version 1.0
// @description Loopback control API of the POS kiosk agent: offline sale capture, sync control, catalog search and fiscal printing.

// @host 127.0.0.1:8765
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session token from /auth/offline-login.

// @tag.name sync
// @tag.description Sync status, manual sync and the event stream

// @tag.name sales
// @tag.description Sale capture and upload status

// @tag.name catalog
// @tag.description Product and customer search

// @tag.name device
// @tag.description Kiosk registration

// @tag.name auth
// @tag.description Operator login against synced users

// @tag.name fiscal
// @tag.description Fiscal printer diagnostics
