package usercontext

// ContextKey is the fiber Locals key holding the request's UserContext.
const ContextKey = "USER_CONTEXT"
