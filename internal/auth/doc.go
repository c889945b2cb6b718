// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

/*
Package auth authenticates relays and operators.

Devices present an HS256 JWT whose subject is the device id and whose jti
must equal the token_id stored in the registry. A valid signature alone is
not enough: the registry row must exist, be enabled and carry the same jti,
so disabling a device or rotating its token takes effect immediately.

Operators present a static bearer token checked against a bcrypt hash
(ADMIN_TOKEN_HASH). HashAdminToken produces that hash.

Key Components:

  - TokenManager: issue and verify device tokens
  - DeviceAuthenticator: token plus registry check for ingestion
  - Registrar: device registration and token rotation
  - AdminAuthenticator: operator bearer token check

Usage Example:

	tokens, err := auth.NewTokenManager(&cfg.Security)
	if err != nil {
	    return err
	}
	devices := auth.NewDeviceAuthenticator(tokens, db)
	device, err := devices.Authenticate(ctx, credential)
	switch {
	case errors.Is(err, auth.ErrUnknownDevice):
	    // 401
	case errors.Is(err, auth.ErrDeviceDisabled), errors.Is(err, auth.ErrTokenRevoked):
	    // 403
	}
*/
package auth
