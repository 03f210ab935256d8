package domain

// ActorCtxKey carries the authenticated actor through request contexts.
const ActorCtxKey = "ca-actor"

// ActorSystem marks mutations performed by the anchoring pipeline itself
// rather than a human administrator.
const ActorSystem = "system"
