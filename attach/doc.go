// Copyright 2026 The Agent Messenger Bridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package attach handles inbound file attachments: downloading them
// from the chat platform to local files, generating the text markers
// appended to the forwarded message, and injecting files into
// container-mode instances.
//
// Everything here is best-effort from the bridge's point of view: a
// failed download or injection is logged and the message is still
// forwarded without that file.
package attach
