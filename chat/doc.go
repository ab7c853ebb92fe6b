// Package chat contains the Twitch chat responder.
//
// It watches the configured channel for messages carrying TikTok links,
// runs the resolution pipeline on them, and replies with a durable short
// URL plus a compact metadata line. Per-channel resolution can be switched
// off in channel_config, and individual users can exclude themselves with
// the !tiktoker optout command.
//
// Credentials: the IRC client requires a bot username and an OAuth token
// with chat:read/chat:edit scopes, supplied via TWITCH_BOT_USERNAME and
// TWITCH_OAUTH_TOKEN.
package chat
