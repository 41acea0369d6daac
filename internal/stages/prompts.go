package stages

// Every system prompt ends with the same closing instruction so the model
// emits the delimited section the parser looks for.
const closingInstruction = `
Write your answer inside the tags exactly as shown. Do not write anything after the closing tag except the sentence "All tags are closed and my assignment is finished."`

const subtaskListSystem = `You split a task prompt into an ordered list of smaller subtasks.

Rules:
- Each subtask is one step a language model can complete in a single response.
- Order the subtasks so every subtask only needs outputs from earlier ones.
- Give every subtask a unique tag in UPPER_SNAKE_CASE; later prompts refer to a subtask's output by its tag.
- The last subtask produces the final answer to the original task.

Answer with a JSON array inside <subtask_list> tags:
<subtask_list>
[
  {"subtask": "Research the key facts about the topic", "tag": "RESEARCH"},
  {"subtask": "Write the final article using the research", "tag": "FINAL_ARTICLE"}
]
</subtask_list>` + closingInstruction

const subtaskListUser = `Task prompt:
%s`

const constraintsSystem = `You extract the constraints and requirements from a task prompt.

A constraint is any instruction the final output must satisfy: length limits, formatting, tone, content that must or must not appear, language, style.
- Write one constraint per line, starting with "- ".
- Keep each constraint self-contained and specific.
- Do not repeat a constraint.
- If the prompt has no constraints, write N/A.

<constraints_and_requirements>
- The answer must be written in English
- Use at most 3 bullet points
</constraints_and_requirements>` + closingInstruction

const constraintsSameWords = `
- Copy each constraint using the same words as the task prompt.`

const constraintsUser = `Task prompt:
%s`

const validationDecisionSystem = `You decide how a constraint on a model's output should be validated.

Answer "code" if a short deterministic function over the output text can check the constraint (counting, formatting, casing, presence of exact strings, length).
Answer "llm" if checking needs judgment or understanding (tone, accuracy, relevance, style).

<validation_decision>code</validation_decision>` + closingInstruction

const validationDecisionUser = `Constraint:
%s`

const validationCodeSystem = `You write a validation function for a constraint on a model's output.

Write one self-contained Python function named validate_input that takes the output as a string and returns True when the constraint holds and False otherwise. Use only the standard library. Never raise; return False on unexpected input.

<validation_function>
def validate_input(input: str) -> bool:
    try:
        return input.islower()
    except Exception:
        return False
</validation_function>` + closingInstruction

const validationCodeUser = `Constraint:
%s`

const validationReportSystem = `You design the failure report a validator fills in when it checks a constraint.

Return a JSON object with exactly these keys inside <validation_report> tags:
- "is_valid": true, false, or null when the outcome cannot be determined
- "error_type": short category of the error, or null
- "error_trackback": where in the output the error occurs, or null
- "failure_cause": why the constraint fails, or null
- "failure_trackback": the part of the output that causes the failure, or null

Fill the fields with the template values a validator of the given strategy would report for a typical failure of this constraint.

<validation_report>
{
  "is_valid": false,
  "error_type": "bullet_count",
  "error_trackback": "line 4",
  "failure_cause": "The answer has 4 bullet points instead of 3.",
  "failure_trackback": "- Avoid screens before bed."
}
</validation_report>` + closingInstruction

const validationReportUser = `Constraint:
%s

Validation strategy: %s`

const subtaskPromptsSystem = `You write a prompt template for every subtask of a decomposed task.

Rules:
- Reference external input variables and outputs of earlier subtasks with {{VARIABLE}} placeholders.
- The only valid placeholders are the external input variable names and the tags of earlier subtasks.
- Each template must be a complete instruction a model can follow on its own.

Answer with a JSON array inside <subtask_prompt_templates> tags, one entry per subtask, in subtask order:
<subtask_prompt_templates>
[
  {"tag": "RESEARCH", "prompt_template": "List the key facts about {{TOPIC}}."},
  {"tag": "FINAL_ARTICLE", "prompt_template": "Write an article about {{TOPIC}} using these facts:\n{{RESEARCH}}"}
]
</subtask_prompt_templates>` + closingInstruction

const subtaskPromptsUser = `Original task prompt:
%s

External input variables:
%s

Subtasks (tag: description):
%s`

const constraintAssignSystem = `You assign constraints to the subtasks they apply to.

A constraint applies to a subtask when the subtask's output must satisfy it. A constraint may apply to several subtasks or to none.

Answer with a JSON object inside <assigned_constraints> tags that maps every subtask tag to the list of constraint numbers that apply to it:
<assigned_constraints>
{"RESEARCH": [], "FINAL_ARTICLE": [1, 2]}
</assigned_constraints>` + closingInstruction

const constraintAssignUser = `Constraints:
%s

Subtasks:
%s`

const generalInstructionsSystem = `You extract general instructions from a prompt template.

Write the generic guidance the prompt gives about how to perform the task (approach, style, format), one instruction per line, without the task-specific content. If there is none, write N/A.

<general_instructions>
- Be concise
- Use plain language
</general_instructions>` + closingInstruction

const generalInstructionsUser = `Prompt template:
%s`
