package mcpserver

// DescriptionFormatURI is the resource URI of DescriptionFormat.
const DescriptionFormatURI = "typikon://description-format"

// DescriptionFormat describes the free-text event description conventions
// the parser understands, so LLM consumers can read or author them.
const DescriptionFormat = `# Typikon Reading Description Format

Calendar events carry their liturgical readings in the free-text
description. The parser recognises the following pieces; anything left over
becomes ` + "`notes`" + `.

## Recognised fields

| Field          | Forms                                                         |
|----------------|---------------------------------------------------------------|
| tone           | ` + "`Tone 4`" + ` (first occurrence, digits only)                       |
| matins gospel  | ` + "`Res. Gospel 8`" + ` or ` + "`Matins Gospel: John 20:1-10`" + `              |
| epistle        | ` + "`Epistle: Heb. 11:9-10`" + ` (the colon is optional)                |
| gospel         | ` + "`Gospel: Luke 2:20-21`" + ` (the colon is optional)                 |
| implicit pair  | ` + "`Divine Liturgy: Eph. 2:14-22; Luke 13:10-17.`" + `                 |

## Rules

1. HTML tags are stripped and whitespace is collapsed before parsing.
2. Labels are case-insensitive.
3. An epistle value ends at the next ` + "`Gospel`" + ` label or at ` + "`Following`" + `.
   A label with nothing after it is ignored and dropped from the notes.
4. A gospel value ends at ` + "`Following`" + ` or at a sentence break (` + "`. `" + ` followed by a
   letter of either case).
5. The implicit pair is only used when the clause after ` + "`Divine Liturgy`" + ` carries no
   Epistle or Gospel label.
6. A description that literally contains ` + "`Epistle`" + ` or ` + "`Gospel`" + ` is treated as
   carrying readings and sorts ahead of other events on the same day.

## Example

    Divine Liturgy: Epistle: Heb. 11:9-10; Gospel: Luke 2:20-21. Tone 4.
    Following the Liturgy, a blessing of water.

parses to

    {
      "tone": "4",
      "epistle": "Heb. 11:9-10",
      "gospel": "Luke 2:20-21",
      "notes": "Following the Liturgy, a blessing of water"
    }

Leading and trailing separators (` + "`. , ;`" + `) are trimmed from notes, so the final
period is dropped.
`
