package constants

import "time"

var ConfidenceBounds = struct {
	TripleMin   int
	TripleMax   int
	JSONMin     int
	JSONMax     int
	FallbackMin int
	FallbackMax int
}{
	TripleMin:   70,  // delimited triple floor
	TripleMax:   95,  // delimited triple ceiling
	JSONMin:     0,   // JSON topMatches floor
	JSONMax:     100, // JSON topMatches ceiling
	FallbackMin: 75,  // inclusive
	FallbackMax: 95,  // exclusive
}

var AnalysisLimits = struct {
	MaxCastsAnalyzed int
	MaxCastLength    int
	MaxBioLength     int
	PreviewLength    int
}{
	MaxCastsAnalyzed: 20,
	MaxCastLength:    320,
	MaxBioLength:     500,
	PreviewLength:    200,
}

var FarcasterConfig = struct {
	DefaultBaseURL      string
	DefaultFetchLimit   int
	MaxFetchLimit       int
	ReactionType        string
	DefaultTimeout      time.Duration
	HTTPClientTimeout   time.Duration
	FetchConcurrency    int
	BundleCacheTTL      time.Duration
	BundleCacheKeyspace string
}{
	DefaultBaseURL:      "https://api.neynar.com",
	DefaultFetchLimit:   50,
	MaxFetchLimit:       150,
	ReactionType:        "likes",
	DefaultTimeout:      15 * time.Second,
	HTTPClientTimeout:   30 * time.Second,
	FetchConcurrency:    2,
	BundleCacheTTL:      5 * time.Minute,
	BundleCacheKeyspace: "miniapp:bundle",
}

var QuickAuthConfig = struct {
	DefaultIssuer  string
	DefaultJWKSURL string
	JWKSCacheTTL   time.Duration
	Leeway         time.Duration
	FetchTimeout   time.Duration
}{
	DefaultIssuer:  "https://auth.farcaster.xyz",
	DefaultJWKSURL: "https://auth.farcaster.xyz/.well-known/jwks.json",
	JWKSCacheTTL:   6 * time.Hour,
	Leeway:         30 * time.Second,
	FetchTimeout:   10 * time.Second,
}

var LLMConfig = struct {
	DefaultTimeout     time.Duration
	MinTimeout         time.Duration
	MaxTimeout         time.Duration
	GroqBaseURL        string
	DefaultGroqModel   string
	DefaultOpenAIModel string
	DefaultGeminiModel string
	PingTimeout        time.Duration
}{
	DefaultTimeout:     20 * time.Second,
	MinTimeout:         1 * time.Second,
	MaxTimeout:         60 * time.Second,
	GroqBaseURL:        "https://api.groq.com/openai/v1",
	DefaultGroqModel:   "llama-3.1-8b-instant",
	DefaultOpenAIModel: "gpt-4.1-mini",
	DefaultGeminiModel: "gemini-2.5-flash",
	PingTimeout:        5 * time.Second,
}

var CircuitBreakerConfig = struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	RateLimitTimeout    time.Duration
	HealthCheckInterval time.Duration
	HealthCheckTimeout  time.Duration
}{
	FailureThreshold:    3,                // 3 consecutive failures open the circuit
	ResetTimeout:        30 * time.Second, // default wait before retrying
	RateLimitTimeout:    10 * time.Minute, // 429 specific wait
	HealthCheckInterval: 5 * time.Minute,
	HealthCheckTimeout:  10 * time.Second,
}

var RedisConfig = struct {
	ReadyTimeout time.Duration
}{
	ReadyTimeout: 5 * time.Second,
}

var ServerConfig = struct {
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	ShutdownTimeout   time.Duration
	MaxBodyBytes      int64
}{
	ReadHeaderTimeout: 10 * time.Second,
	WriteTimeout:      90 * time.Second, // covers collector + LLM timeouts
	ShutdownTimeout:   10 * time.Second,
	MaxBodyBytes:      1 << 20,
}
