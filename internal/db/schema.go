package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- REVIEW TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS review SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS code ON review TYPE string;
    DEFINE FIELD IF NOT EXISTS language ON review TYPE string;
    DEFINE FIELD IF NOT EXISTS status ON review TYPE string
        ASSERT $value IN ["pending", "completed", "failed"];
    DEFINE FIELD IF NOT EXISTS fingerprint ON review TYPE string;
    DEFINE FIELD IF NOT EXISTS submitter ON review TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS client_addr ON review TYPE string;
    DEFINE FIELD IF NOT EXISTS feedback ON review TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS created_at ON review TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS completed_at ON review TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS failed_at ON review TYPE option<datetime>;

    DEFINE INDEX IF NOT EXISTS review_created ON review FIELDS created_at;
    DEFINE INDEX IF NOT EXISTS review_language ON review FIELDS language;
    DEFINE INDEX IF NOT EXISTS review_status ON review FIELDS status;
    DEFINE INDEX IF NOT EXISTS review_fingerprint ON review FIELDS fingerprint;
    DEFINE INDEX IF NOT EXISTS review_submitter ON review FIELDS submitter;
    -- Rate limiter range scans: (client_addr, created_at)
    DEFINE INDEX IF NOT EXISTS review_client_created ON review FIELDS client_addr, created_at;

    -- ==========================================================================
    -- USER TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS user SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS email ON user TYPE string;
    DEFINE FIELD IF NOT EXISTS password_hash ON user TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS google ON user TYPE bool DEFAULT false;
    DEFINE FIELD IF NOT EXISTS created_at ON user TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS user_email ON user FIELDS email UNIQUE;
`
