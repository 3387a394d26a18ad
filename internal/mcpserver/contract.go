package mcpserver

// ArticleFormatContract describes the canonical article format that LLM
// consumers should follow when creating or updating articles.
const ArticleFormatContract = `# Ansuz Article Format Contract

Every Markdown article stored in Ansuz MUST follow this structure.

## Structure

` + "```" + `markdown
---
title: Human-readable title         # REQUIRED – used in lists and search
excerpt: One-to-two sentence summary of the article.
category:                           # category.slug is REQUIRED
  name: Docker
  slug: docker
date: 2025-01-15                    # ISO-8601 date or datetime
publishedAt: 2025-01-15
updatedAt: 2025-01-15               # the only field that changes after publication
readingTime: 8 min read             # derived from word count when omitted
author:
  name: Jane Doe
  slug: jane-doe
tags:                               # ordered list; free text
  - containers
  - devops
---

Body text in standard Markdown (GFM: tables and fenced code blocks render).
` + "```" + `

## Rules

1. **Frontmatter is mandatory.** The ` + "`" + `---` + "`" + ` fences must open and close the
   block; a missing closing fence is a hard error, not a fallback.
   TOML frontmatter between ` + "`" + `+++` + "`" + ` fences is also accepted.
2. **` + "`" + `title` + "`" + ` and ` + "`" + `category.slug` + "`" + ` are required.** Everything else is
   optional but recommended.
3. **Slugs** are lowercase, kebab-case (e.g. ` + "`" + `docker` + "`" + `, ` + "`" + `jane-doe` + "`" + `).
   Non-conforming slugs produce lint warnings.
4. **One article per file.** The export separator token is only produced by
   bulk exports; never write it by hand.
5. **File paths** end with ` + "`" + `.md` + "`" + ` and use forward slashes.
6. **Encoding** is UTF-8 with a trailing newline.
7. Validate drafts with the ` + "`" + `validate_article` + "`" + ` tool before creating them;
   it reports every problem in one pass.
`
